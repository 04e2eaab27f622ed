// Package comments assembles comment fragments into per-post trees.
//
// Fragments arrive in any order and may overlap. Ingest merges them without
// losing the collapsed state of nodes already shown and without ever moving a
// node to a different parent, so the tree stays acyclic. "More" markers are
// kept on the node whose replies they stand for; Expand turns one into a
// fetch request through the scheduler.
package comments
