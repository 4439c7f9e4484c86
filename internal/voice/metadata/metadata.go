// Package metadata reads the recording time embedded in audio containers.
// Only MP4/M4A is understood; other formats fall back to the caller's time.
package metadata

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidFormat indicates the file is not a valid M4A/MP4 file.
var ErrInvalidFormat = errors.New("invalid M4A format")

// macEpoch is the zero point of MP4 timestamps.
var macEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

var m4aBrands = map[string]bool{"M4A ": true, "mp41": true, "mp42": true, "isom": true}

// AudioMetadata contains extracted metadata from an audio file.
type AudioMetadata struct {
	CreationTime time.Time
	Duration     time.Duration
}

// RecordedAt returns the creation time stored in an M4A file, or fallback
// when the file is another format, unreadable, or carries no timestamp.
func RecordedAt(path string, fallback time.Time) time.Time {
	if !strings.EqualFold(filepath.Ext(path), ".m4a") {
		return fallback
	}
	meta, err := ExtractM4A(path)
	if err != nil || meta.CreationTime.IsZero() {
		return fallback
	}
	return meta.CreationTime
}

// ExtractM4A extracts metadata from an M4A file.
func ExtractM4A(path string) (*AudioMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseM4A(f)
}

func parseM4A(r io.ReadSeeker) (*AudioMetadata, error) {
	meta := &AudioMetadata{}
	var sawFtyp, sawMoov bool

	for {
		payload, kind, err := readBox(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch kind {
		case "ftyp":
			if err := checkBrand(r, payload); err != nil {
				return nil, err
			}
			sawFtyp = true
		case "moov":
			if err := walkMoov(r, payload, meta); err != nil {
				return nil, err
			}
			sawMoov = true
		default:
			if err := skip(r, payload); err != nil {
				return nil, err
			}
		}

		if sawFtyp && sawMoov {
			break
		}
	}

	if !sawFtyp || !sawMoov {
		return nil, ErrInvalidFormat
	}
	return meta, nil
}

// readBox reads a box header and returns the payload length and type.
// 64-bit sizes are supported; a zero size (box runs to EOF) is rejected.
func readBox(r io.Reader) (int64, string, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, "", err
	}

	size := int64(binary.BigEndian.Uint32(hdr[0:4]))
	kind := string(hdr[4:8])

	switch size {
	case 0:
		return 0, "", ErrInvalidFormat
	case 1:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, "", err
		}
		size = int64(binary.BigEndian.Uint64(ext[:]))
		if size < 16 {
			return 0, "", ErrInvalidFormat
		}
		return size - 16, kind, nil
	}

	if size < 8 {
		return 0, "", ErrInvalidFormat
	}
	return size - 8, kind, nil
}

func skip(r io.Seeker, n int64) error {
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}

func checkBrand(r io.ReadSeeker, payload int64) error {
	if payload < 4 {
		return ErrInvalidFormat
	}
	var brand [4]byte
	if _, err := io.ReadFull(r, brand[:]); err != nil {
		return err
	}
	if !m4aBrands[string(brand[:])] {
		return ErrInvalidFormat
	}
	return skip(r, payload-4)
}

func walkMoov(r io.ReadSeeker, payload int64, meta *AudioMetadata) error {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end := start + payload

	for {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if pos >= end {
			return nil
		}

		n, kind, err := readBox(r)
		if err != nil {
			return err
		}
		if kind == "mvhd" {
			if err := readMvhd(r, n, meta); err != nil {
				return err
			}
			continue
		}
		if err := skip(r, n); err != nil {
			return err
		}
	}
}

// readMvhd reads creation time and duration from a movie header. Version 0
// stores 32-bit fields, version 1 stores 64-bit times and duration.
func readMvhd(r io.ReadSeeker, payload int64, meta *AudioMetadata) error {
	var vf [4]byte
	if _, err := io.ReadFull(r, vf[:]); err != nil {
		return err
	}

	var (
		created, duration uint64
		timescale         uint32
		read              int64 = 4
	)

	switch vf[0] {
	case 0:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		created = uint64(binary.BigEndian.Uint32(b[0:4]))
		timescale = binary.BigEndian.Uint32(b[8:12])
		duration = uint64(binary.BigEndian.Uint32(b[12:16]))
		read += 16
	case 1:
		var b [28]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		created = binary.BigEndian.Uint64(b[0:8])
		timescale = binary.BigEndian.Uint32(b[16:20])
		duration = binary.BigEndian.Uint64(b[20:28])
		read += 28
	default:
		return skip(r, payload-read)
	}

	if created > 0 {
		meta.CreationTime = macEpoch.Add(time.Duration(created) * time.Second)
	}
	if timescale > 0 {
		meta.Duration = time.Duration(duration) * time.Second / time.Duration(timescale)
	}

	if payload > read {
		return skip(r, payload-read)
	}
	return nil
}
