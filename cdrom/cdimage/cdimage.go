// Package cdimage parses a cue/bin CD image pair: the cue sheet names one
// data file and a sequence of tracks with pregaps and indices; byte_at maps
// a disc-relative byte offset back into the underlying bin file via each
// track's (start, end, offset) triple.
package cdimage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const bytesPerSector = 2352
const framesPerSecond = 75

// Track describes one track's extent within the disc address space and
// its corresponding byte offset into the bin file.
type Track struct {
	Number int
	Type   string
	Start  int64 // disc-relative byte offset, inclusive
	End    int64 // disc-relative byte offset, exclusive
	Offset int64 // bin-file byte offset corresponding to Start
}

// Image is a parsed cue sheet plus a handle to its bin file.
type Image struct {
	binPath string
	bin     *os.File
	tracks  []Track
}

// Open parses cuePath and opens the bin file it references.
func Open(cuePath string) (*Image, error) {
	f, err := os.Open(cuePath)
	if err != nil {
		return nil, fmt.Errorf("cdimage: %w", err)
	}
	defer f.Close()

	img := &Image{}
	dir := filepath.Dir(cuePath)

	var curTrack *Track
	var curOffset int64
	var pregap int64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.Trim(scanner.Text(), string(rune(0xFEFF))))
		if line == "" {
			continue
		}
		fields := splitCueLine(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "FILE":
			if len(fields) < 2 {
				continue
			}
			name := fields[1]
			path := name
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, name)
			}
			bin, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("cdimage: opening bin file: %w", err)
			}
			img.bin = bin
			img.binPath = path
			curOffset = 0
		case "TRACK":
			if curTrack != nil {
				img.tracks = append(img.tracks, *curTrack)
			}
			num, _ := strconv.Atoi(fields[1])
			curTrack = &Track{Number: num, Type: fields[2], Offset: curOffset}
			pregap = 0
		case "PREGAP":
			pregap += msfToBytes(fields[1])
		case "INDEX":
			if curTrack == nil {
				continue
			}
			idx, _ := strconv.Atoi(fields[1])
			pos := msfToBytes(fields[2])
			if idx == 1 {
				curTrack.Start = pos + pregap
			}
		}
	}
	if curTrack != nil {
		img.tracks = append(img.tracks, *curTrack)
	}

	for i := range img.tracks {
		if i+1 < len(img.tracks) {
			img.tracks[i].End = img.tracks[i+1].Start
		} else if img.bin != nil {
			info, err := img.bin.Stat()
			if err == nil {
				img.tracks[i].End = info.Size() - img.tracks[i].Offset + img.tracks[i].Start
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cdimage: %w", err)
	}
	return img, nil
}

func splitCueLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// msfToBytes converts an "MM:SS:FF" cue sheet timestamp to a byte offset,
// per the 2352-bytes-per-sector, 75-frames-per-second convention.
func msfToBytes(msf string) int64 {
	parts := strings.Split(msf, ":")
	if len(parts) != 3 {
		return 0
	}
	minutes, _ := strconv.Atoi(parts[0])
	seconds, _ := strconv.Atoi(parts[1])
	frames, _ := strconv.Atoi(parts[2])
	return int64(frames)*bytesPerSector + int64(seconds)*bytesPerSector*framesPerSecond + int64(minutes)*bytesPerSector*framesPerSecond*60
}

// ByteAt maps a disc-relative byte position into the bin file and returns
// the byte there. It returns an error if position falls outside every
// track's extent.
func (img *Image) ByteAt(position int64) (byte, error) {
	for _, t := range img.tracks {
		if position >= t.Start && position < t.End {
			binPos := t.Offset + (position - t.Start)
			buf := make([]byte, 1)
			if _, err := img.bin.ReadAt(buf, binPos); err != nil {
				return 0, fmt.Errorf("cdimage: %w", err)
			}
			return buf[0], nil
		}
	}
	return 0, fmt.Errorf("cdimage: position %d outside all tracks", position)
}

// ReadSector fills dst with len(dst) consecutive bytes starting at the
// given disc position.
func (img *Image) ReadSector(position int64, dst []byte) error {
	for i := range dst {
		b, err := img.ByteAt(position + int64(i))
		if err != nil {
			return err
		}
		dst[i] = b
	}
	return nil
}

// Tracks returns the parsed track table.
func (img *Image) Tracks() []Track {
	return img.tracks
}

// Close releases the bin file handle.
func (img *Image) Close() error {
	if img.bin == nil {
		return nil
	}
	return img.bin.Close()
}
