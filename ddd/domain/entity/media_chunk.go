package entity

import "time"

// MediaChunk 归一化后的一段音频，PayloadRef 指向临时目录中的 WAV 文件
type MediaChunk struct {
	SequenceIndex int
	StartOffset   time.Duration
	Duration      time.Duration
	PayloadRef    string
}

// End 返回该分片在源音频中的结束时间
func (c MediaChunk) End() time.Duration {
	return c.StartOffset + c.Duration
}

// TotalDuration sums chunk durations.
func TotalDuration(chunks []MediaChunk) time.Duration {
	var total time.Duration
	for _, c := range chunks {
		total += c.Duration
	}
	return total
}
