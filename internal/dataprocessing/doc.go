// Package dataprocessing turns uploaded bytes into tables and tables into
// merged and pivoted tables.
//
// # Components
//
//  1. CSVDecoder: decodes CSV text, trying each configured encoding in turn
//  2. ParseWorkbook: reads the first sheet of an XLSX upload
//  3. Merger: inner-joins two tables on key columns, exactly or by substring
//  4. Aggregator: groups a table into a pivot with sum, mean, count, min or max
//
// # Usage
//
//	decoder := dataprocessing.NewCSVDecoder(encodings, logger)
//	a, _, err := decoder.Decode("customers.csv", data)
//	if err != nil {
//	    return err
//	}
//
//	merger := dataprocessing.NewMerger(dataprocessing.DefaultMergeOptions(), logger)
//	merged, summary, err := merger.Merge(a, b, domain.MergeRequest{
//	    KeysA: []string{"id"},
//	    KeysB: []string{"customer_id"},
//	})
//
//	pivot, err := dataprocessing.NewAggregator(logger).Pivot(merged, domain.PivotRequest{
//	    Index:   []string{"region"},
//	    Values:  []string{"amount"},
//	    AggFunc: domain.AggSum,
//	})
//
// # Data Flow
//
//	bytes -> Decoder -> Table A, Table B -> Merger -> merged -> column selection -> Aggregator -> pivot
//
// # Missing Values
//
// Empty cells and the usual NA/NaN/NULL spellings count as missing. Missing
// keys never match, and missing values are skipped by every aggregation.
//
// # Error Handling
//
// Failures are returned as *errors.AppError values of type FILE_DECODE,
// MERGE_CONFIG, MERGE_EXEC or PIVOT_CONFIG so the HTTP layer can map them to
// problem details.
package dataprocessing
