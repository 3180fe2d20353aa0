// Package filevalidator checks untrusted library content before it reaches
// a storage: uploaded .h5p packages are screened for zip bombs and path
// traversal, and single library files are checked against an extension
// allowlist.
package filevalidator
