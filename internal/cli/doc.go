// ABOUTME: Package cli implements the sounddevice command line
// ABOUTME: Subcommands record, play, loopback and inspect the format registry
package cli
