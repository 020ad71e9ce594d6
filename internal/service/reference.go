package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const referenceVersion = "v1"

var versionPrefix = regexp.MustCompile(`^(v\d+):`)

// Reference — внешняя ссылка платежа: кто платит, кому и за какую покупку.
// Формат "v1:{student}-{tutor}-{purchase}"; старые ссылки без версии тоже читаются.
type Reference struct {
	Version    string
	StudentID  string
	TutorID    string
	PurchaseID string // может содержать дефисы, например UUID
}

// NewReference создаёт ссылку; пустой purchaseID заменяется на новый UUID.
// ID студента и преподавателя не должны содержать '-' и ':'.
func NewReference(studentID, tutorID, purchaseID string) (Reference, error) {
	for _, id := range []string{studentID, tutorID} {
		if id == "" || strings.ContainsAny(id, "-:") {
			return Reference{}, fmt.Errorf("%w: participant id %q cannot be encoded", ErrMalformedReference, id)
		}
	}
	if purchaseID == "" {
		purchaseID = uuid.NewString()
	}
	return Reference{
		Version:    referenceVersion,
		StudentID:  studentID,
		TutorID:    tutorID,
		PurchaseID: purchaseID,
	}, nil
}

// Encode сериализует ссылку в текущей версии формата
func (r Reference) Encode() string {
	return fmt.Sprintf("%s:%s-%s-%s", referenceVersion, r.StudentID, r.TutorID, r.PurchaseID)
}

func (r Reference) String() string {
	return r.Encode()
}

// ParseReference разбирает внешнюю ссылку; любая ошибка — ErrMalformedReference
func ParseReference(raw string) (Reference, error) {
	body := strings.TrimSpace(raw)
	version := ""

	if m := versionPrefix.FindStringSubmatch(body); m != nil {
		version = m[1]
		if version != referenceVersion {
			return Reference{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedReference, version)
		}
		body = body[len(m[0]):]
	}

	parts := strings.SplitN(body, "-", 3)
	if len(parts) != 3 {
		return Reference{}, fmt.Errorf("%w: %q", ErrMalformedReference, raw)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" || strings.Contains(p, ":") {
			return Reference{}, fmt.Errorf("%w: %q", ErrMalformedReference, raw)
		}
	}

	return Reference{
		Version:    version,
		StudentID:  parts[0],
		TutorID:    parts[1],
		PurchaseID: parts[2],
	}, nil
}
