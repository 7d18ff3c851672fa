package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"closet-service/internal/apperr"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"go.uber.org/zap"
)

// BackupTables lists the tables that can be exported, in menu order.
var BackupTables = []string{
	repository.ExportShirts,
	repository.ExportPants,
	repository.ExportShoes,
	repository.ExportSuits,
	repository.ExportTransactions,
	repository.ExportUsers,
}

// BackupService streams table dumps as CSV.
type BackupService struct {
	exporter repository.Exporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(exporter repository.Exporter) *BackupService {
	return &BackupService{exporter: exporter, logger: util.GetLogger(), now: time.Now}
}

// ValidTable reports whether table can be exported.
func ValidTable(table string) bool {
	for _, t := range BackupTables {
		if t == table {
			return true
		}
	}
	return false
}

// FileName returns the download name for a dump of table.
func (s *BackupService) FileName(table string) string {
	return fmt.Sprintf("%s-%s.csv", table, s.now().Format("2006-01-02"))
}

// Export writes table to w as CSV with a header row.
func (s *BackupService) Export(ctx context.Context, w io.Writer, table string) error {
	ctx, span := util.StartSpan(ctx, "BackupService.Export")
	defer span.End()

	if !ValidTable(table) {
		return apperr.BadRequest("%q is not a table that can be backed up", table)
	}
	if err := s.exporter.ExportCSV(ctx, w, table); err != nil {
		return apperr.Internal("A problem occurred when backing up "+table, err)
	}
	s.logger.Info("Backup exported", zap.String("table", table))
	return nil
}
