// Package closet is the scan workflow on top of the scan store.
//
// Service turns an analysis outcome into a scan record (deriving co2e_grams
// from the emissions total and keeping failures with their error code),
// guards against double submission of one capture, and answers the queries
// behind the home, history and closet views.
//
// The remote analysis service is reached through the Analyzer interface and
// is not implemented here.
package closet
