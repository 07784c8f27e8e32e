package redis

import "strconv"

// CollectionCallback receives the aggregated scan result, or an error
// string.
type CollectionCallback func(items [][]byte, err string)

// IncrementalCollectionCallback receives scan batches as they arrive.
// Exactly one invocation per chain has last set; preceding ones carry
// non-empty batches.
type IncrementalCollectionCallback func(items [][]byte, err string, last bool)

// defaultScanLimit is the COUNT hint used by key retrieval.
const defaultScanLimit = 100

// RetrieveCollection drives a scan chain to completion and delivers
// the concatenation of all batches in a single callback.
func (c *Connection) RetrieveCollection(cmd *ScanCommand, callback CollectionCallback) error {
	if !cmd.IsValidScanCommand() {
		return ErrInvalidCommand
	}
	return c.processScanCommand(cmd, callback, nil, false, false)
}

// RetrieveCollectionIncrementally streams scan batches to the
// callback as the chain progresses, terminating with last=true.
func (c *Connection) RetrieveCollectionIncrementally(cmd *ScanCommand, callback IncrementalCollectionCallback) error {
	if !cmd.IsValidScanCommand() {
		return ErrInvalidCommand
	}
	return c.processScanCommand(cmd, func(items [][]byte, err string) {
		switch {
		case err == EndOfCollection:
			callback(items, "", true)
		case err != "":
			callback(items, err, true)
		default:
			callback(items, "", false)
		}
	}, nil, true, false)
}

// processScanCommand issues one scan step and re-enqueues itself with
// the returned cursor until the chain terminates. In incremental mode
// the buffer is cleared per step so each delivery carries only the
// new batch. The substituted flag limits SCAN-to-ISCAN replay to one
// attempt per chain.
func (c *Connection) processScanCommand(cmd *ScanCommand, callback CollectionCallback,
	buffer *[][]byte, incremental bool, substituted bool) error {
	if buffer == nil {
		b := make([][]byte, 0)
		buffer = &b
	}

	cmd.SetCallback(c, func(r Response, errText string) {
		if r.IsErrorMessage() {
			// some cloud providers disable SCAN on clusters and offer
			// ISCAN instead
			if !substituted && cmd.Name() == "scan" && r.IsDisabledCommandErrorMessage() {
				iscan := cmd.WithName("iscan")
				if err := c.processScanCommand(iscan, callback, buffer, incremental, true); err != nil {
					callback(nil, err.Error())
				}
				return
			}
			callback(nil, r.String())
			return
		}

		if errText != "" {
			callback(nil, errText)
			return
		}

		if incremental {
			*buffer = (*buffer)[:0]
		}

		if !r.IsValidScanResponse() {
			// vendor scans may answer with an empty or singular array
			// instead of the [cursor, items] pair
			if len(*buffer) == 0 {
				if incremental {
					callback(nil, EndOfCollection)
				} else {
					callback(nil, "")
				}
			} else {
				callback(*buffer, "")
			}
			return
		}

		*buffer = append(*buffer, r.Collection()...)

		if r.Cursor() == 0 {
			if incremental {
				callback(*buffer, EndOfCollection)
			} else {
				callback(*buffer, "")
			}
			return
		}

		if incremental && len(*buffer) > 0 {
			callback(*buffer, "")
		}

		next := cmd.Clone()
		next.SetCursor(r.Cursor())
		if err := c.processScanCommand(next, callback, buffer, incremental, substituted); err != nil {
			callback(nil, err.Error())
		}
	})

	_, err := c.runCommand(cmd.Command)
	return err
}

// GetDatabaseKeys scans dbIndex for keys matching pattern and
// delivers them in one batch.
func (c *Connection) GetDatabaseKeys(callback RawKeysCallback, pattern string, dbIndex int, scanLimit int64) error {
	raw := [][]byte{
		[]byte("scan"), []byte("0"),
		[]byte("MATCH"), []byte(pattern),
		[]byte("COUNT"), []byte(strconv.FormatInt(scanLimit, 10)),
	}
	keyCmd := NewScanCommand(raw, dbIndex)

	return c.RetrieveCollection(keyCmd, func(items [][]byte, err string) {
		if err != "" {
			callback(nil, "Cannot load keys: "+err)
			return
		}
		callback(items, "")
	})
}
