package upload

import "time"

// Progress is one observation of an upload attempt.
type Progress struct {
	Phase      Phase         `json:"phase"`
	BytesSent  int64         `json:"bytes_sent"`
	BytesTotal int64         `json:"bytes_total"`
	Percent    int           `json:"percent"`
	Speed      float64       `json:"speed_bps"`
	ETA        time.Duration `json:"-"`
	Started    time.Time     `json:"-"`
}

// ETASeconds is ETA rounded up to whole seconds.
func (p Progress) ETASeconds() int64 {
	if p.ETA <= 0 {
		return 0
	}
	return int64((p.ETA + time.Second - 1) / time.Second)
}

// Percent returns floor(sent*100/total) clamped to [0,100]. It is 100 only
// when sent has reached total.
func Percent(sent, total int64) int {
	if total <= 0 {
		if sent >= total {
			return 100
		}
		return 0
	}
	if sent <= 0 {
		return 0
	}
	if sent >= total {
		return 100
	}
	return int(sent * 100 / total)
}

// Measure derives percentage, throughput and ETA for a transfer that started
// at start and has moved sent of total bytes by now.
func Measure(sent, total int64, start, now time.Time) Progress {
	p := Progress{
		Phase:      Uploading,
		BytesSent:  sent,
		BytesTotal: total,
		Percent:    Percent(sent, total),
		Started:    start,
	}

	elapsed := now.Sub(start).Seconds()
	if elapsed <= 0 || sent <= 0 {
		return p
	}
	p.Speed = float64(sent) / elapsed

	if remaining := total - sent; remaining > 0 {
		p.ETA = time.Duration(float64(remaining) / p.Speed * float64(time.Second))
	}
	return p
}
