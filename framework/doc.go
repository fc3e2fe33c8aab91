// Package framework adds the OpenUI5 or SAPUI5 libraries referenced by the
// projects of a graph.
//
// Enrich reads the framework name and version of the root project, collects
// the libraries referenced anywhere in the graph and hands them to a
// Resolver. The resolver computes the transitive closure of the libraries
// from their metadata and installs every package of the closure
// concurrently. The installed libraries are assembled into a separate graph
// which is joined into the enriched one. Finally each project gets edges to
// the libraries it references.
package framework
