package audio

// ResampleMono resamples one channel of float samples from srcRate to
// dstRate using linear interpolation. If the rates match (or either is
// non-positive) the input is returned unchanged.
//
// Linear interpolation is adequate here: the only conversions in practice
// are between the fixed endpoint rates (16/24 kHz) and whatever rate a
// stubborn capture device imposes, and speech tolerates the resulting
// high-frequency error.
func ResampleMono(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// DownmixMono averages all channels of b into a single mono channel at the
// same sample rate. A buffer that is already mono is returned unchanged.
func DownmixMono(b Buffer) Buffer {
	if len(b.Data) <= 1 {
		return b
	}

	frames := b.Frames()
	mono := make([]float32, frames)
	n := float32(len(b.Data))
	for i := range frames {
		var sum float32
		for ch := range b.Data {
			sum += b.Data[ch][i]
		}
		mono[i] = sum / n
	}
	return Buffer{Data: [][]float32{mono}, SampleRate: b.SampleRate}
}
