// Package main is wdctl, a command line WebDriver client for the proxy.
//
// Usage:
//
//	export WDCTL_SESSION=$(wdctl session new)
//	wdctl url https://example.com/
//	wdctl title
//	wdctl screenshot -o page.png
//	wdctl session delete
package main
