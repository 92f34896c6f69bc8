/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package conn

// writeBacklog is the FIFO of owned byte chunks spec.md §4.B's write-backlog
// algorithm describes. The source keeps a fixed-size staging array it
// flips before each provider write; a plain chunk queue is behaviorally
// identical once chunks are already independently-allocated Go slices, so
// this drops the staging-buffer bookkeeping and keeps only the queue.
type writeBacklog struct {
	chunks [][]byte
}

func (b *writeBacklog) Empty() bool {
	return len(b.chunks) == 0
}

func (b *writeBacklog) Enqueue(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.chunks = append(b.chunks, cp)
}

// Drain pops chunks one at a time, handing each to write, stopping at the
// first chunk that does not fully drain. Returns true once every chunk
// (including ones enqueued by a concurrent write while draining) is gone.
func (b *writeBacklog) Drain(write func([]byte) (int, error)) (bool, error) {
	for len(b.chunks) > 0 {
		chunk := b.chunks[0]
		n, err := write(chunk)
		if err != nil {
			return false, err
		}
		if n < len(chunk) {
			b.chunks[0] = chunk[n:]
			return false, nil
		}
		b.chunks = b.chunks[1:]
	}
	return true, nil
}
