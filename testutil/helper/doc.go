// Package helper provides shared testing utilities for the custody packages.
//
// It contains spies for the logging and metrics seams, fixture builders for catalog records and
// Given... helpers which arrange store state through the public store interfaces.
package helper
