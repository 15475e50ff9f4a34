package ingest

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"muxsynth/models"
	"muxsynth/utils"
	"muxsynth/views"
)

// Block is a run of consecutive vectors read from an interchange file.
// Start is the index of the first vector in the file.
type Block struct {
	Start   int64
	Vectors []models.Vec3
}

// FileReader streams an interchange file on its own goroutine so that
// decompression and disk reads overlap with the consumer's work. Blocks
// are delivered in file order on Out; at most depth blocks are in
// flight, so memory stays bounded by depth × chunk.
//
// Unlike a live sensor feed nothing is ever dropped: when the consumer
// falls behind the reader waits, and the wait is counted as a stall.
type FileReader struct {
	path  string
	chunk int
	total int64

	Out  chan *Block
	free chan *Block
	err  error

	produced uint64
	stalls   uint64
}

// NewFileReader prepares a reader delivering chunk vectors per block.
func NewFileReader(path string, chunk, depth int) *FileReader {
	if chunk <= 0 {
		chunk = 65536
	}
	if depth <= 0 {
		depth = 4
	}
	return &FileReader{
		path:  path,
		chunk: chunk,
		Out:   make(chan *Block, depth),
		free:  make(chan *Block, depth+2),
	}
}

// Start opens the file and launches the read loop. Open errors are
// returned directly; later errors are reported by Err once Out closes.
func (r *FileReader) Start(ctx context.Context) error {
	f, err := views.OpenVecFile(r.path)
	if err != nil {
		return err
	}
	r.total = f.Len()
	go r.run(ctx, f)
	utils.L().Debug("file reader started   (%s, %d vectors, chunk=%d, depth=%d)", r.path, r.total, r.chunk, cap(r.Out))
	return nil
}

func (r *FileReader) run(ctx context.Context, f *views.VecReader) {
	defer close(r.Out)
	defer f.Close()

	var start int64
	for {
		if err := ctx.Err(); err != nil {
			r.err = err
			return
		}
		b := r.get()
		n, err := f.Read(b.Vectors[:cap(b.Vectors)])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.err = err
			return
		}
		b.Start, b.Vectors = start, b.Vectors[:n]
		start += int64(n)

		select {
		case r.Out <- b:
		default:
			atomic.AddUint64(&r.stalls, 1)
			select {
			case r.Out <- b:
			case <-ctx.Done():
				r.err = ctx.Err()
				return
			}
		}
		atomic.AddUint64(&r.produced, 1)
	}
	utils.L().Debug("file reader finished  (%s, blocks=%d, stalls=%d)", r.path,
		atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.stalls))
}

func (r *FileReader) get() *Block {
	select {
	case b := <-r.free:
		return b
	default:
		return &Block{Vectors: make([]models.Vec3, r.chunk)}
	}
}

// Release hands a consumed block back for reuse.
func (r *FileReader) Release(b *Block) {
	select {
	case r.free <- b:
	default:
	}
}

// Len returns the number of vectors in the file. Valid after Start.
func (r *FileReader) Len() int64 { return r.total }

// Err reports why the read loop stopped early. Only meaningful once Out
// has been closed.
func (r *FileReader) Err() error { return r.err }

// Stats returns the blocks delivered and the number of times the reader
// had to wait for the consumer.
func (r *FileReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.stalls)
}
