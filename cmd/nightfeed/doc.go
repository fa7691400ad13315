// Command nightfeed is the operational CLI for the Night-Feed pipeline:
// trigger runs, inspect run history and status, manage configuration, and
// test notifications.
package main
