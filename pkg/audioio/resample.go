package audioio

import "math"

// Resample converts audio from one sample rate to another using linear interpolation.
// This is a simple resampler suitable for speech audio.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(math.Round(float64(len(samples)) / ratio))
	if newLen == 0 {
		return []float32{}
	}

	result := make([]float32, newLen)
	last := len(samples) - 1
	for i := range result {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= last {
			result[i] = samples[last]
			continue
		}
		frac := float32(srcPos - float64(srcIdx))
		result[i] = samples[srcIdx] + frac*(samples[srcIdx+1]-samples[srcIdx])
	}
	return result
}

// FloatToInt16 converts a normalized sample to int16. Values outside [-1, 1]
// are clamped; negative values scale by 32768 and positive by 32767.
func FloatToInt16(s float32) int16 {
	if s >= 1 {
		return math.MaxInt16
	}
	if s <= -1 {
		return math.MinInt16
	}
	if s < 0 {
		return int16(math.Round(float64(s) * 32768))
	}
	return int16(math.Round(float64(s) * 32767))
}

// Int16ToFloat converts an int16 sample to [-1, 1).
func Int16ToFloat(s int16) float32 {
	return float32(s) / 32768
}

// FloatToPCM16 converts normalized samples to raw PCM16 little-endian bytes.
func FloatToPCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := FloatToInt16(s)
		data[i*2] = byte(v)
		data[i*2+1] = byte(uint16(v) >> 8)
	}
	return data
}

// PCM16ToFloat converts raw PCM16 little-endian bytes to normalized samples.
// A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = Int16ToFloat(int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8))
	}
	return samples
}

// Downmix averages interleaved multi-channel samples to mono.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	mono := make([]float32, len(interleaved)/channels)
	scale := 1 / float32(channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum * scale
	}
	return mono
}

// Upmix duplicates mono samples across channels, interleaved.
func Upmix(mono []float32, channels int) []float32 {
	if channels <= 1 {
		return mono
	}
	out := make([]float32, len(mono)*channels)
	for i, s := range mono {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = s
		}
	}
	return out
}
