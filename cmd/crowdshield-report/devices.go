package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/CrowdShield/CS-Backend/internal/blob"
	"github.com/CrowdShield/CS-Backend/internal/capture"
)

const fileChunkSize = 32 << 10

// fileRecorder plays a pre-recorded audio file in place of a microphone.
type fileRecorder struct {
	path string
	last *fileRecording
}

func (f *fileRecorder) Start(ctx context.Context) (capture.Recording, error) {
	ct, err := blob.AudioContentType(filepath.Ext(f.path))
	if err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening audio: %w", err)
	}

	rec := &fileRecording{
		contentType: ct,
		chunks:      make(chan []byte),
		stop:        make(chan struct{}),
		drained:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go rec.play(file)
	f.last = rec
	return rec, nil
}

type fileRecording struct {
	contentType string
	chunks      chan []byte
	stop        chan struct{}
	stopOnce    sync.Once
	drained     chan struct{}
	done        chan struct{}
	err         error
}

// play sends the file in chunks, then holds until Stop.
func (r *fileRecording) play(file *os.File) {
	defer close(r.done)
	defer close(r.chunks)
	defer file.Close()

	func() {
		defer close(r.drained)
		for {
			buf := make([]byte, fileChunkSize)
			n, err := file.Read(buf)
			if n > 0 {
				select {
				case r.chunks <- buf[:n]:
				case <-r.stop:
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				r.err = err
				return
			}
		}
	}()
	<-r.stop
}

func (r *fileRecording) Chunks() <-chan []byte { return r.chunks }
func (r *fileRecording) ContentType() string   { return r.contentType }

func (r *fileRecording) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	return r.err
}

// Drained is closed once the whole file has been handed out.
func (r *fileRecording) Drained() <-chan struct{} { return r.drained }

// staticLocator answers with fixed coordinates.
type staticLocator struct {
	coords capture.Coordinates
}

func (s staticLocator) Locate(ctx context.Context) (capture.Coordinates, error) {
	return s.coords, nil
}
