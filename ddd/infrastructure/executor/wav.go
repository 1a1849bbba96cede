package executor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"lingo-service/ddd/domain/entity"
)

const wavHeaderSize = 44

// ErrNoAudioFrames is returned for a decoded stream whose data chunk holds no complete frame.
var ErrNoAudioFrames = errors.New("decoded audio contains no frames")

// WAVFormat is the subset of the fmt chunk needed for frame arithmetic.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	BlockAlign    uint16
}

// ReadWAVHeader returns the format and the byte range of the data chunk.
func ReadWAVHeader(f io.ReadSeeker) (WAVFormat, int64, int64, error) {
	var format WAVFormat
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return format, 0, 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return format, 0, 0, errors.New("not a RIFF/WAVE file")
	}

	haveFmt := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return format, 0, 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return format, 0, 0, err
		}

		switch id {
		case "fmt ":
			var body [16]byte
			if size < 16 {
				return format, 0, 0, errors.New("fmt chunk too short")
			}
			if _, err := io.ReadFull(f, body[:]); err != nil {
				return format, 0, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			format.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			format.Channels = binary.LittleEndian.Uint16(body[2:4])
			format.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			format.BlockAlign = binary.LittleEndian.Uint16(body[12:14])
			format.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return format, 0, 0, errors.New("data chunk before fmt chunk")
			}
			if format.BlockAlign == 0 || format.SampleRate == 0 {
				return format, 0, 0, errors.New("invalid wav format")
			}
			// 流式写出的 WAV 可能没有回填 data 长度
			if size == 0 || size == 0xFFFFFFFF {
				end, err := f.Seek(0, io.SeekEnd)
				if err != nil {
					return format, 0, 0, err
				}
				size = end - pos
			}
			return format, pos, size, nil
		}
		// chunk 按偶数字节对齐
		next := pos + size + size%2
		if _, err := f.Seek(next, io.SeekStart); err != nil {
			return format, 0, 0, err
		}
	}
}

// WriteWAVHeader writes a canonical 44 byte PCM header.
func WriteWAVHeader(w io.Writer, format WAVFormat, dataSize uint32) error {
	var h [wavHeaderSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], format.AudioFormat)
	binary.LittleEndian.PutUint16(h[22:24], format.Channels)
	binary.LittleEndian.PutUint32(h[24:28], format.SampleRate)
	binary.LittleEndian.PutUint32(h[28:32], format.SampleRate*uint32(format.BlockAlign))
	binary.LittleEndian.PutUint16(h[32:34], format.BlockAlign)
	binary.LittleEndian.PutUint16(h[34:36], format.BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	_, err := w.Write(h[:])
	return err
}

func framesToDuration(frames int64, rate uint32) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// SplitWAV cuts the PCM data of src into chunk files of at most maxChunk each, always
// at frame boundaries. A source that fits in one chunk is returned as is. The returned
// duration is the total number of frames over the sample rate.
func SplitWAV(src, dir string, maxChunk time.Duration) ([]entity.MediaChunk, time.Duration, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	format, dataStart, dataSize, err := ReadWAVHeader(f)
	if err != nil {
		return nil, 0, err
	}
	frameSize := int64(format.BlockAlign)
	totalFrames := dataSize / frameSize
	total := framesToDuration(totalFrames, format.SampleRate)
	if totalFrames == 0 {
		return nil, 0, ErrNoAudioFrames
	}

	framesPerChunk := int64(maxChunk.Seconds() * float64(format.SampleRate))
	if maxChunk <= 0 || framesPerChunk <= 0 || totalFrames <= framesPerChunk {
		return []entity.MediaChunk{{SequenceIndex: 0, StartOffset: 0, Duration: total, PayloadRef: src}}, total, nil
	}

	chunks := make([]entity.MediaChunk, 0, totalFrames/framesPerChunk+1)
	for idx, frame := 0, int64(0); frame < totalFrames; idx++ {
		n := framesPerChunk
		if frame+n > totalFrames {
			n = totalFrames - frame
		}
		path := filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", idx))
		if err := writeChunk(f, path, format, dataStart+frame*frameSize, n*frameSize); err != nil {
			return nil, 0, err
		}
		chunks = append(chunks, entity.MediaChunk{
			SequenceIndex: idx,
			StartOffset:   framesToDuration(frame, format.SampleRate),
			Duration:      framesToDuration(frame+n, format.SampleRate) - framesToDuration(frame, format.SampleRate),
			PayloadRef:    path,
		})
		frame += n
	}
	return chunks, total, nil
}

func writeChunk(src *os.File, path string, format WAVFormat, offset, size int64) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAVHeader(out, format, uint32(size)); err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(out, io.NewSectionReader(src, offset, size)); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}
