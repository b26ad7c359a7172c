// Package history persists finished logical requests and their timelines in
// a sqlite database, so earlier sends can be listed and inspected.
package history
