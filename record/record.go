// Package record holds the interchange schema compaction plans are persisted in.
package record

type (
	// CompactionOperationRecord is one row of a persisted compaction plan.
	// DataFilePath and Metrics may be unset.
	CompactionOperationRecord struct {
		BaseInstantTime string             `parquet:"name=base_instant_time, type=BYTE_ARRAY, convertedtype=UTF8" json:"baseInstantTime"`
		DataFilePath    *string            `parquet:"name=data_file_path, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"dataFilePath"`
		DeltaFilePaths  []string           `parquet:"name=delta_file_paths, type=MAP, convertedtype=LIST, valuetype=BYTE_ARRAY, valueconvertedtype=UTF8" json:"deltaFilePaths"`
		PartitionPath   string             `parquet:"name=partition_path, type=BYTE_ARRAY, convertedtype=UTF8" json:"partitionPath"`
		FileID          string             `parquet:"name=file_id, type=BYTE_ARRAY, convertedtype=UTF8" json:"fileId"`
		Metrics         map[string]float64 `parquet:"name=metrics, type=MAP, convertedtype=MAP, keytype=BYTE_ARRAY, keyconvertedtype=UTF8, valuetype=DOUBLE" json:"metrics"`
	}
)
