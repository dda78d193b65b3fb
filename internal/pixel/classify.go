package pixel

import "math"

// ClassifyWindow caps the sample Classify inspects, purely to bound latency.
const ClassifyWindow = 256 << 10

// DefaultPacking is returned when the sample is too small to judge. The
// capture pipeline emits YUYV in every shipped configuration, so ambiguity
// resolves toward it.
const DefaultPacking = YUYV

// A group is two packed pixels: four bytes, two luma and two chroma.
const groupSize = 4

// minGroups is the smallest sample considered classifiable.
const minGroups = 16

// Classify infers which byte positions of a packed 4:2:2 stream carry luma.
// In natural imagery chroma is smoother than luma and centered near the
// neutral value 128, so for each packing hypothesis the sample is scored by
//
//	chromaVariance/lumaVariance + |chromaMean-128|/128
//
// and the lower score wins. The packing is a property of the hardware
// pipeline, not of individual frames, so one call on the first frame
// suffices. Deterministic for identical input.
func Classify(sample []byte) Format {
	if len(sample) > ClassifyWindow {
		sample = sample[:ClassifyWindow]
	}
	if len(sample)/groupSize < minGroups {
		return DefaultPacking
	}

	// Hypothesis YUYV puts luma on even positions, UYVY on odd.
	if packingScore(sample, 1) < packingScore(sample, 0) {
		return UYVY
	}
	return YUYV
}

// packingScore evaluates the hypothesis that luma occupies byte positions
// congruent to lumaAt (mod 2) within each 4-byte group.
func packingScore(sample []byte, lumaAt int) float64 {
	groups := len(sample) / groupSize

	var lumaSum, chromaSum float64
	var lumaSq, chromaSq float64
	n := float64(2 * groups)

	for g := 0; g < groups; g++ {
		base := g * groupSize
		for k := 0; k < groupSize; k++ {
			v := float64(sample[base+k])
			if k%2 == lumaAt {
				lumaSum += v
				lumaSq += v * v
			} else {
				chromaSum += v
				chromaSq += v * v
			}
		}
	}

	lumaMean := lumaSum / n
	chromaMean := chromaSum / n
	lumaVar := lumaSq/n - lumaMean*lumaMean
	chromaVar := chromaSq/n - chromaMean*chromaMean

	// A perfectly flat luma channel would divide by zero; clamp so the
	// score stays finite and comparisons stay deterministic.
	if lumaVar < 1e-9 {
		lumaVar = 1e-9
	}

	return chromaVar/lumaVar + math.Abs(chromaMean-128)/128
}
