package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// AddressLength is the size of an EthereumAddress in bytes.
	AddressLength = 20

	streamPartDelimiter = "#"
)

var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidStreamPartID = errors.New("invalid stream part id")
)

// EthereumAddress identifies a storage node.
type EthereumAddress [AddressLength]byte

// UserID identifies a publisher.
type UserID = EthereumAddress

// ParseAddress parses a hex address with or without the 0x prefix.
func ParseAddress(src string) (EthereumAddress, error) {
	var addr EthereumAddress
	s := strings.TrimPrefix(strings.ToLower(src), "0x")
	if len(s) != 2*AddressLength {
		return addr, fmt.Errorf("%w: %q has length %d", ErrInvalidAddress, src, len(s))
	}
	if _, err := hex.Decode(addr[:], []byte(s)); err != nil {
		return addr, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(src string) EthereumAddress {
	addr, err := ParseAddress(src)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a EthereumAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a EthereumAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *EthereumAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

type StreamID string

// StreamPartID is the "<stream>#<partition>" form of a stream partition.
type StreamPartID string

func NewStreamPartID(stream StreamID, partition uint32) StreamPartID {
	return StreamPartID(string(stream) + streamPartDelimiter + strconv.FormatUint(uint64(partition), 10))
}

func ParseStreamPartID(src string) (StreamPartID, error) {
	idx := strings.LastIndex(src, streamPartDelimiter)
	if idx <= 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStreamPartID, src)
	}
	if _, err := strconv.ParseUint(src[idx+1:], 10, 32); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidStreamPartID, src, err)
	}
	return StreamPartID(src), nil
}

// StreamID returns the stream part of the id.
func (id StreamPartID) StreamID() StreamID {
	idx := strings.LastIndex(string(id), streamPartDelimiter)
	if idx < 0 {
		return StreamID(id)
	}
	return StreamID(id[:idx])
}

// Partition returns the partition of the id, 0 if the id is malformed.
func (id StreamPartID) Partition() uint32 {
	idx := strings.LastIndex(string(id), streamPartDelimiter)
	if idx < 0 {
		return 0
	}
	p, err := strconv.ParseUint(string(id[idx+1:]), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(p)
}

func (id StreamPartID) String() string {
	return string(id)
}
