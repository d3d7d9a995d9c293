/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the fmt-chunk tag of integer PCM; IEEE float is 3.
const wavFormatPCM = 1

// LoadWAV decodes the WAV file at path into the buffer, downmixing to mono.
func (b *Buffer) LoadWAV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("buffer %s: %w", b.systemName, err)
	}
	defer f.Close()
	return b.LoadWAVFrom(f, path)
}

// LoadWAVFrom decodes WAV data from r; url is recorded as the buffer's origin.
func (b *Buffer) LoadWAVFrom(r io.ReadSeeker, url string) error {
	samples, rate, err := decodeWAV(r)
	if err != nil {
		return fmt.Errorf("buffer %s: %w", b.systemName, err)
	}
	if err := b.Load(samples, rate); err != nil {
		return err
	}
	return b.engine.update(&b.released, func() { b.url = url })
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("input is not a valid WAV audio file")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("unsupported WAV audio format %d, only integer PCM is supported", decoder.WavAudioFormat)
	}
	if decoder.BitDepth != 8 && decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode WAV: %w", err)
	}
	return downmix(pcm, int(decoder.BitDepth)), int(decoder.SampleRate), nil
}

// downmix averages interleaved channels into normalized mono samples.
func downmix(pcm *goaudio.IntBuffer, bitDepth int) []float32 {
	channels := 1
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		channels = pcm.Format.NumChannels
	}

	// 8-bit WAV is unsigned; everything wider is signed.
	offset := 0.0
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		offset = 128
		scale = 128
	}

	frames := len(pcm.Data) / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += (float64(pcm.Data[f*channels+ch]) - offset) / scale
		}
		out[f] = float32(sum / float64(channels))
	}
	return out
}
