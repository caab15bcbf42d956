package iteration

import (
	"encoding/csv"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CSVWriter writes rows as comma-separated values with a header line before the first batch.
type CSVWriter struct {
	w      *csv.Writer
	header bool
}

// NewCSVWriter wraps an io.Writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteRows implements RowWriter.
func (c *CSVWriter) WriteRows(schema Schema, rows []Row) error {
	if !c.header {
		if err := c.w.Write(schema.Columns()); err != nil {
			return err
		}
		c.header = true
	}
	record := make([]string, 0, len(schema.Columns()))
	for _, row := range rows {
		record = record[:0]
		for _, v := range row.Values() {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := c.w.Write(record); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// YAMLWriter writes each batch as one YAML document.
type YAMLWriter struct {
	enc *yaml.Encoder
}

// NewYAMLWriter wraps an io.Writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLWriter{enc: enc}
}

type yamlBatch struct {
	Name       string   `yaml:"name"`
	Session    string   `yaml:"session"`
	Components []string `yaml:"components"`
	Dials      []string `yaml:"dials"`
	Rows       []Row    `yaml:"rows"`
}

// WriteRows implements RowWriter.
func (y *YAMLWriter) WriteRows(schema Schema, rows []Row) error {
	return y.enc.Encode(yamlBatch{
		Name:       schema.Name,
		Session:    schema.SessionID,
		Components: schema.Components,
		Dials:      schema.Dials,
		Rows:       rows,
	})
}

// Close finishes the YAML stream.
func (y *YAMLWriter) Close() error { return y.enc.Close() }
