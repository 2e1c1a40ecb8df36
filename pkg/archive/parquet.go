package archive

import (
	"os"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/swarm"
)

// discoverySchema is the Parquet layout for exported discoveries. Scores stay
// strings: the decimal renderings carry more precision than any float column
// could.
var discoverySchema = arrow.NewSchema([]arrow.Field{
	{Name: "expression", Type: arrow.BinaryTypes.String},
	{Name: "target", Type: arrow.BinaryTypes.String},
	{Name: "value", Type: arrow.BinaryTypes.String},
	{Name: "error", Type: arrow.BinaryTypes.String},
	{Name: "elegance", Type: arrow.BinaryTypes.String},
	{Name: "complexity", Type: arrow.PrimitiveTypes.Int64},
	{Name: "generation", Type: arrow.PrimitiveTypes.Int64},
	{Name: "elapsed_ms", Type: arrow.PrimitiveTypes.Int64},
}, nil)

// ExportParquetFile writes a session's discoveries to a Parquet file at path.
func ExportParquetFile(path string, record *swarm.ExportRecord) error {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, discoverySchema)
	defer builder.Release()

	for _, d := range record.Discoveries {
		builder.Field(0).(*array.StringBuilder).Append(d.Expression)
		builder.Field(1).(*array.StringBuilder).Append(record.Target)
		builder.Field(2).(*array.StringBuilder).Append(d.Value)
		builder.Field(3).(*array.StringBuilder).Append(d.Error)
		builder.Field(4).(*array.StringBuilder).Append(d.Elegance)
		builder.Field(5).(*array.Int64Builder).Append(int64(d.Complexity))
		builder.Field(6).(*array.Int64Builder).Append(int64(d.Generation))
		builder.Field(7).(*array.Int64Builder).Append(d.ElapsedMS)
	}

	rec := builder.NewRecord()
	defer rec.Release()
	table := array.NewTableFromRecords(discoverySchema, []arrow.Record{rec})
	defer table.Release()

	f, err := os.Create(path)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to create Parquet file"),
			errors.Fields{"path": path},
		)
	}
	defer f.Close()

	chunkSize := table.NumRows()
	if chunkSize == 0 {
		chunkSize = 1
	}
	if err := pqarrow.WriteTable(table, f, chunkSize,
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to write Parquet table")
	}
	return nil
}
