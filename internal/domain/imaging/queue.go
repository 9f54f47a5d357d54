package imaging

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is the in-memory holding area for images and studies awaiting
// assignment. It is created at process start and injected into every
// component that touches it; adapters write, assignment handlers
// read-and-remove. Removal is exactly-once: of N concurrent removals for
// the same key, one receives the entry and the rest get ErrNotFound.
//
// Entries survive only as long as the process; the backing device folders
// are the durable copy, and the watcher re-detects anything lost to a
// restart.
type Queue struct {
	mu      sync.Mutex
	images  []IncomingImage
	studies []IncomingStudy
}

func NewQueue() *Queue {
	return &Queue{}
}

// EnqueueImage adds a loose image. Returns false when an image with the
// same filename is already queued (watcher rescans re-report files).
func (q *Queue) EnqueueImage(img IncomingImage) bool {
	if img.DetectedAt.IsZero() {
		img.DetectedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.images {
		if existing.Filename == img.Filename {
			return false
		}
	}
	q.images = append(q.images, img)
	return true
}

// EnqueueStudy adds a study and issues its queue id. Studies sourced from a
// folder are deduplicated by folder path so rescans do not double-enqueue.
func (q *Queue) EnqueueStudy(study IncomingStudy) (uuid.UUID, bool) {
	if study.DetectedAt.IsZero() {
		study.DetectedAt = time.Now().UTC()
	}
	if study.ID == uuid.Nil {
		study.ID = uuid.New()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.studies {
		if existing.ID == study.ID {
			return existing.ID, false
		}
		if study.StudyFolderPath != "" && existing.StudyFolderPath == study.StudyFolderPath {
			return existing.ID, false
		}
	}
	q.studies = append(q.studies, study)
	return study.ID, true
}

// Images lists queued images in insertion order.
func (q *Queue) Images() []IncomingImage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]IncomingImage(nil), q.images...)
}

// Studies lists queued studies in insertion order.
func (q *Queue) Studies() []IncomingStudy {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]IncomingStudy(nil), q.studies...)
}

// RemoveImage claims the image with the given filename.
func (q *Queue) RemoveImage(filename string) (IncomingImage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, img := range q.images {
		if img.Filename == filename {
			q.images = append(q.images[:i], q.images[i+1:]...)
			return img, nil
		}
	}
	return IncomingImage{}, ErrNotFound
}

// RemoveStudy claims the study with the given queue id.
func (q *Queue) RemoveStudy(id uuid.UUID) (IncomingStudy, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, study := range q.studies {
		if study.ID == id {
			q.studies = append(q.studies[:i], q.studies[i+1:]...)
			return study, nil
		}
	}
	return IncomingStudy{}, ErrNotFound
}
