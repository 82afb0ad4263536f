package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

type (
	importData struct {
		Students []grading.StudentIdentity `json:"students" validate:"dive"`
		Grades   []importGrades            `json:"grades" validate:"dive"`
	}

	importGrades struct {
		StudentID string               `json:"student_id" validate:"required"`
		Period    grading.Period       `json:"period" validate:"required,period"`
		Entries   []grading.GradeEntry `json:"entries" validate:"dive"`
	}
)

// importFile loads students then replaces their grades in a single transaction, eg.
//
//	{"students": [{"id": "1", "first_name": "Amani", ...}],
//	 "grades": [{"student_id": "1", "period": "Trimestre 1", "entries": [{"subject_name": "Maths", "score": 14, "weight": 4}]}]}
func (cli *commandLine) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var data importData
	if err = json.NewDecoder(f).Decode(&data); err != nil {
		return errors.Wrap(err, "decoding import file")
	}
	for i := range data.Students {
		s := &data.Students[i]
		s.FirstName = core.CleanString(s.FirstName)
		s.LastName = core.CleanString(s.LastName)
		s.ClassName = core.CleanString(s.ClassName)
		s.GuardianContact = core.CleanString(s.GuardianContact, true /* lower */)
	}
	if err = cli.validate.Struct(data); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return importValidationError(vErrs, cli.translator)
		}
		return err
	}

	var entries int
	err = cli.atomic(ctx, func(store Store) error {
		for _, s := range data.Students {
			if err := store.SaveStudent(ctx, s); err != nil {
				return errors.Wrapf(err, "student %s", s.ID)
			}
		}
		for _, g := range data.Grades {
			if err := store.ReplaceGrades(ctx, g.StudentID, g.Period, g.Entries); err != nil {
				return errors.Wrapf(err, "grades of student %s", g.StudentID)
			}
			entries += len(g.Entries)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "nothing imported")
	}
	_, _ = fmt.Fprintf(cli.out, "%d students, %d grade entries imported\n", len(data.Students), entries)
	return nil
}

// importValidationError names every invalid field by its path in the file, eg. "grades[0].entries[1].score".
func importValidationError(errs validator.ValidationErrors, translator ut.Translator) error {
	flds := make([]core.FieldError, len(errs))
	msgs := make([]string, len(errs))
	for i, fe := range errs {
		field := fe.Namespace()
		if dot := strings.IndexByte(field, '.'); dot >= 0 {
			field = field[dot+1:] // drop the root struct name
		}
		flds[i] = core.FieldError{Field: field, Error: fe.Translate(translator)}
		msgs[i] = field + ": " + flds[i].Error
	}
	return core.NewValidationError(errors.New("invalid import file: "+strings.Join(msgs, "; ")), flds...)
}
