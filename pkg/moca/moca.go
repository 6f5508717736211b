// Package moca defines the MoCA query collaborators diagd relays to the host.
//
// A query fills a caller-allocated buffer sized to the record it returns and
// reports how many bytes are valid. The records are opaque to diagd.
package moca

import "github.com/cockroachdb/errors"

const (
	// MaxNodes is the largest number of nodes on one MoCA network.
	MaxNodes = 16

	InitParmsSize      = 304
	StatusSize         = 212
	ConfigSize         = 248
	NodeStatusSize     = 96 * MaxNodes
	ConnInfoSize       = 4 * MaxNodes * MaxNodes
	NodeStatsEntrySize = 60
	// NodeStatsTableSize is the worst case: an entry per node plus the entry count.
	NodeStatsTableSize = NodeStatsEntrySize*MaxNodes + 4
)

var (
	ErrQueryFailed  = errors.New("moca: query failed")
	ErrNotAvailable = errors.New("moca: query not available")
)

// Querier is implemented by whatever can talk to the MoCA chip. On error the
// contents of buf are undefined.
type Querier interface {
	GetInitParms(buf []byte) (int, error)
	GetStatus(buf []byte) (int, error)
	GetConfig(buf []byte) (int, error)
	GetNodeStatus(buf []byte) (int, error)
	GetNodeStatistics(buf []byte) (int, error)
	GetConnInfo(buf []byte) (int, error)
}

// Unavailable answers every query with ErrNotAvailable. It is used when the
// device has no MoCA interface configured.
type Unavailable struct{}

func (Unavailable) GetInitParms([]byte) (int, error)      { return 0, ErrNotAvailable }
func (Unavailable) GetStatus([]byte) (int, error)         { return 0, ErrNotAvailable }
func (Unavailable) GetConfig([]byte) (int, error)         { return 0, ErrNotAvailable }
func (Unavailable) GetNodeStatus([]byte) (int, error)     { return 0, ErrNotAvailable }
func (Unavailable) GetNodeStatistics([]byte) (int, error) { return 0, ErrNotAvailable }
func (Unavailable) GetConnInfo([]byte) (int, error)       { return 0, ErrNotAvailable }
