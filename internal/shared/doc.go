// Package shared holds code used across csvmapper packages that belongs to no
// single layer.
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler and NewTestLogger for asserting on log output
//   - MustTable and CSVBytes for building table fixtures
//   - CustomersTable, BalancesTable and SalesTable, the standard merge and
//     pivot scenarios
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    merger := dataprocessing.NewMerger(dataprocessing.DefaultMergeOptions(), logger)
//	    out, _, err := merger.Merge(testutil.CustomersTable(t), testutil.BalancesTable(t), req)
//	    ...
//	    testutil.AssertNoErrors(t, handler)
//	}
package shared
