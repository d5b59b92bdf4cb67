// Package files locates the transaction shards of a run and writes its
// outputs.
//
// Discovery: lists the shard files (*.csv, *.xlsx) or shard directories
// under the data directory in name order and fingerprints them with
// BLAKE2b-256 for the run manifest.
//
// Manager: writes output files under the output directory through a
// temporary file and rename, so a failed run never leaves a partial file.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/srv/shards", logger)
//	shards, err := discovery.Discover(ctx)
//
//	manager := files.NewManager("/srv/out")
//	err = manager.WriteFile("panel.csv", func(w io.Writer) error {
//	    return writer.Write(w, p)
//	})
package files
