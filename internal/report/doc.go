// Package report renders a stored scan the way the results view presents it:
// name and category, the CO2e figure, the emissions breakdown, materials,
// care instructions and origin, or a friendly message for failed scans.
package report
