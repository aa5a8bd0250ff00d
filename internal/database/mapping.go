package database

import (
	"database/sql"
	"fmt"

	sqldb "github.com/fieldnotes-md/fieldnotes/internal/database/sqlc"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

func keyParams(key model.Key) sqldb.ObservationKeyParams {
	return sqldb.ObservationKeyParams{Time: key.Millis(), Suspicion: key.Suspicion()}
}

func mapObservationRow(row sqldb.Observation) (model.Observation, error) {
	key, err := model.KeyFromMillis(row.Time, row.Suspicion)
	if err != nil {
		return model.Observation{}, fmt.Errorf("%w: stored observation: %w", ErrFatal, err)
	}

	var location *model.Location
	if row.PosLatitude.Valid && row.PosLongitude.Valid {
		location, err = model.NewLocation(row.PosLatitude.Float64, row.PosLongitude.Float64)
		if err != nil {
			return model.Observation{}, fmt.Errorf("%w: stored observation %s: %w", ErrFatal, key, err)
		}
	}

	return model.RestoreObservation(
		key,
		optionalString(row.Comment),
		row.Determined != 0,
		row.ImagesAttached != 0,
		row.RecordingsAttached != 0,
		location,
	), nil
}

func mapObservationRows(rows []sqldb.Observation) ([]model.Observation, error) {
	result := make([]model.Observation, 0, len(rows))
	for _, row := range rows {
		obs, err := mapObservationRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, obs)
	}
	return result, nil
}

func observationToParams(obs model.Observation) sqldb.UpsertObservationParams {
	comment, _ := obs.Comment()
	params := sqldb.UpsertObservationParams{
		Time:               obs.Key().Millis(),
		Suspicion:          obs.Suspicion(),
		Comment:            nullString(comment),
		Determined:         boolToInt64(obs.Determined()),
		ImagesAttached:     boolToInt64(obs.ImagesAttached()),
		RecordingsAttached: boolToInt64(obs.RecordingsAttached()),
	}
	if loc := obs.Location(); loc != nil {
		params.PosLatitude = sql.NullFloat64{Float64: loc.Latitude, Valid: true}
		params.PosLongitude = sql.NullFloat64{Float64: loc.Longitude, Valid: true}
	}
	return params
}

func mapTagRow(row sqldb.Tag) (model.Tag, error) {
	tag, err := model.RestoreTag(row.Tag, optionalString(row.Parent))
	if err != nil {
		return model.Tag{}, fmt.Errorf("%w: stored tag %q: %w", ErrFatal, row.Tag, err)
	}
	return tag, nil
}

func mapTagRows(rows []sqldb.Tag) ([]model.Tag, error) {
	result := make([]model.Tag, 0, len(rows))
	for _, row := range rows {
		tag, err := mapTagRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, nil
}

func tagToParams(tag model.Tag) sqldb.InsertTagParams {
	parent, _ := tag.Parent()
	return sqldb.InsertTagParams{Tag: tag.Content(), Parent: nullString(parent)}
}

func mapAttachmentRow(row sqldb.Attachment) (model.Attachment, error) {
	owner, err := model.KeyFromMillis(row.ObservationTime, row.ObservationSuspicion)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: stored attachment %q: %w", ErrFatal, row.FilePath, err)
	}
	typ, err := model.ParseAttachmentType(row.Type)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: stored attachment %q: %w", ErrFatal, row.FilePath, err)
	}
	attachment, err := model.NewAttachment(row.FilePath, typ, owner)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: stored attachment %q: %w", ErrFatal, row.FilePath, err)
	}
	return attachment, nil
}

func mapAttachmentRows(rows []sqldb.Attachment) ([]model.Attachment, error) {
	result := make([]model.Attachment, 0, len(rows))
	for _, row := range rows {
		a, err := mapAttachmentRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

func attachmentToRow(a model.Attachment) sqldb.Attachment {
	owner := a.Owner()
	return sqldb.Attachment{
		FilePath:             a.Path(),
		ObservationTime:      owner.Millis(),
		ObservationSuspicion: owner.Suspicion(),
		Type:                 a.Type().String(),
	}
}
