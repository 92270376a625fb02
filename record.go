// Package safecache persists translation cache files durably.
//
// A cache file is a UTF-8 JSON array of [Record] values. The package
// guarantees that after any save - success, failure, crash, or concurrent
// callers - the target file holds either the complete previous content or
// the complete new content, never a truncated or partial mix.
//
// The main types are:
//   - [Store]: caller-facing facade (Save, Backup, Restore, Validate)
//   - [AtomicWriter]: temp file + fsync + rename replace sequence
//   - [BackupManager]: timestamped snapshots with retention pruning
//   - [RecordValidator]: structural check of the on-disk format
//   - [Config]: immutable per-call configuration
package safecache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Index is a record position. Caches written by older tools store it as
// either a JSON number or a numeric string; both decode. It always encodes
// as a number.
type Index int64

// UnmarshalJSON accepts 3 and "3".
func (i *Index) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("index %q is not an integer", s)
	}

	*i = Index(n)

	return nil
}

// Record is one translated sentence in a cache file.
//
// The five untagged-by-omitempty fields are required by the on-disk format;
// the rest are preserved when present and omitted when zero.
type Record struct {
	Index  Index  `json:"index"`
	Name   string `json:"name"`
	PreJP  string `json:"pre_jp"`
	PostJP string `json:"post_jp"`
	PreZH  string `json:"pre_zh"`

	ProofreadZH       string  `json:"proofread_zh,omitempty"`
	TransBy           string  `json:"trans_by,omitempty"`
	ProofreadBy       string  `json:"proofread_by,omitempty"`
	TransConf         float64 `json:"trans_conf,omitempty"`
	DoubContent       string  `json:"doub_content,omitempty"`
	UnknownProperNoun string  `json:"unknown_proper_noun,omitempty"`
}

// requiredRecordKeys are the keys every record object must carry on disk.
var requiredRecordKeys = []string{"index", "name", "pre_jp", "post_jp", "pre_zh"}

// EncodeRecords serializes records to the on-disk cache format: a two-space
// indented JSON array with multibyte text left unescaped. A nil slice
// encodes as an empty array, never null.
//
// Every save path uses this function, so the atomic and the plain fallback
// writers produce byte-identical files.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeRecords parses the on-disk cache format.
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	return records, nil
}
