// Package opengraph derives Open Graph and Twitter Card metadata for a page.
//
// A Generator resolves the page context of a request (article, member
// profile, group hub or generic page), looks up the content it needs through
// the Repository and Media interfaces, and emits an ordered set of <meta>
// attributes for the document head.
//
// Resolution never fails: lookups that error degrade to empty fields and the
// emitter fills site-wide fallbacks. A Generator is immutable once built and
// safe for concurrent use.
package opengraph
