package cypher

import (
	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
)

type relPropCompiler struct{}

func NewRelPropCompiler() RelPropCompiler {
	return relPropCompiler{}
}

func (relPropCompiler) CompileRelProp(f qcode.Field, props *sdata.RelProps, relVar string) string {
	v := relVar + "." + props.DBName(f.Name)
	if tf, ok := props.TemporalField(f.Name); ok && tf.Type == sdata.TypeDateTime {
		v = formatDateTime(v)
	}
	return f.Alias + ": " + v
}

func formatDateTime(v string) string {
	return `apoc.date.convertFormat(toString(` + v + `), "iso_zoned_date_time", "iso_offset_date_time")`
}
