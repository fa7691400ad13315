// Package notifications posts run outcomes to a configured webhook.
package notifications
