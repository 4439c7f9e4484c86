package metadata

import (
	"encoding/binary"
	"os"
	"time"
)

func box(kind string, payload ...[]byte) []byte {
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], kind)
	return append(out, body...)
}

func ftyp(brand string) []byte {
	return box("ftyp", []byte(brand), []byte{0, 0, 0, 0}, []byte(brand))
}

// mvhd builds a movie header with a 1000 Hz timescale.
func mvhd(version byte, created time.Time, seconds uint32) []byte {
	secs := uint64(created.Sub(macEpoch) / time.Second)
	if version == 1 {
		b := make([]byte, 4+28+80)
		b[0] = 1
		binary.BigEndian.PutUint64(b[4:12], secs)
		binary.BigEndian.PutUint64(b[12:20], secs)
		binary.BigEndian.PutUint32(b[20:24], 1000)
		binary.BigEndian.PutUint64(b[24:32], uint64(seconds)*1000)
		return box("mvhd", b)
	}
	b := make([]byte, 4+16+80)
	binary.BigEndian.PutUint32(b[4:8], uint32(secs))
	binary.BigEndian.PutUint32(b[8:12], uint32(secs))
	binary.BigEndian.PutUint32(b[12:16], 1000)
	binary.BigEndian.PutUint32(b[16:20], seconds*1000)
	return box("mvhd", b)
}

func writeM4A(path string, parts ...[]byte) error {
	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	return os.WriteFile(path, data, 0644)
}
