package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalos/dentalos/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const consultationCols = `id, patient_id, doctor_id, doctor_name, status, complaint,
	xray_note, xray_radiologist, xray_study_guid, xray_study_date, xray_images,
	version_id, created_at, updated_at, completed_at`

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	c.VersionID = 1
	images, err := marshalImages(c.XRayImages)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation (
			id, patient_id, doctor_id, doctor_name, status, complaint,
			xray_note, xray_radiologist, xray_study_guid, xray_study_date, xray_images
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.ID, c.PatientID, c.DoctorID, c.DoctorName, c.Status, c.Complaint,
		c.XRayNote, c.XRayRadiologist, c.XRayStudyGUID, c.XRayStudyDate, images,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repoPG) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `
		SELECT `+consultationCols+` FROM consultation
		WHERE patient_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1`,
		patientID, StatusInProgress, StatusWaitingXray, StatusXrayDone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consultation WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count consultations: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+consultationCols+` FROM consultation
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		c, err := scanConsultationRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repoPG) UpdateCAS(ctx context.Context, c *Consultation) (bool, error) {
	images, err := marshalImages(c.XRayImages)
	if err != nil {
		return false, err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET
			doctor_id=$3, doctor_name=$4, status=$5, complaint=$6,
			xray_note=$7, xray_radiologist=$8, xray_study_guid=$9, xray_study_date=$10,
			xray_images=$11, completed_at=$12,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2`,
		c.ID, c.VersionID,
		c.DoctorID, c.DoctorName, c.Status, c.Complaint,
		c.XRayNote, c.XRayRadiologist, c.XRayStudyGUID, c.XRayStudyDate,
		images, c.CompletedAt,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	c.VersionID++
	return true, nil
}

func marshalImages(images []AssignedImage) ([]byte, error) {
	if images == nil {
		images = []AssignedImage{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("marshal xray images: %w", err)
	}
	return data, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	return scanConsultationRow(row)
}

func scanConsultationRow(row scannable) (*Consultation, error) {
	var c Consultation
	var images []byte
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.DoctorName, &c.Status, &c.Complaint,
		&c.XRayNote, &c.XRayRadiologist, &c.XRayStudyGUID, &c.XRayStudyDate, &images,
		&c.VersionID, &c.CreatedAt, &c.UpdatedAt, &c.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &c.XRayImages); err != nil {
			return nil, fmt.Errorf("unmarshal xray images: %w", err)
		}
	}
	if c.XRayImages == nil {
		c.XRayImages = []AssignedImage{}
	}
	return &c, nil
}
