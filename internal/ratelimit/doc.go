// Package ratelimit is per-ip token bucket middleware for the public page
// listener.
//
// State is in memory and local to one process. It keeps a single crawler or
// scraper from monopolising render capacity and the content store; it does
// not stop distributed floods, which belong to the CDN or WAF in front.
package ratelimit
