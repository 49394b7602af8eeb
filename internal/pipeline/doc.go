// Package pipeline runs the scrape for a batch of product identifiers.
//
// For each identifier the row Pipeline fetches the search page, extracts the
// product link, fetches the product page, and extracts the family path and
// image links. A failure at any hop ends that row only. The Runner processes
// rows strictly in input order, reports two-phase progress, and assembles the
// output table. Task moves a run onto a background goroutine and streams its
// progress over a channel.
package pipeline
