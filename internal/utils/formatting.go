package utils

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

func StripANSI(input string) string {
	re := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return re.ReplaceAllString(input, "")
}

func GetMaxWidth(lines []string) int {
	maxWidth := 0
	for _, line := range lines {
		length := len(StripANSI(line))
		if length > maxWidth {
			maxWidth = length
		}
	}
	return maxWidth
}

// HumanSize renders a byte count as B/KiB/MiB/GiB.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// HumanSpeed renders a bytes-per-second rate.
func HumanSpeed(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	return HumanSize(int64(bps)) + "/s"
}

// HumanETA renders a seconds estimate as mm:ss or hh:mm:ss.
func HumanETA(seconds float64) string {
	if seconds <= 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
