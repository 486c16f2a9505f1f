// Package jsonldb persists collections of rows as JSON array files.
//
// # Overview
//
// [File] maps one collection to one file. A load decodes the whole array and a
// save rewrites the whole array; there is no partial update. Callers own the
// decoded rows and decide when to persist them.
//
// # File Format
//
// A UTF-8 JSON array of objects, one object per row, indented for diffing. There
// is no header or schema version. Saves go through a temporary file in the same
// directory that is renamed over the target, so readers see either the old or
// the new array.
//
// # Schema
//
// [Columns] derives the column list of a row type from its JSON tags using JSON
// Schema reflection.
package jsonldb
