package config

import (
	"fmt"
	"sort"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamProfileKey returns the cache key for an exam's profile (key, booklets, subjects)
func (r *CacheKeyStruct) ExamProfileKey(examID string) string {
	return fmt.Sprintf("exam:%s:profile", examID)
}

// ExamRosterKey returns the cache key for the roster snapshot used by an exam's imports.
// The class filter is part of the key, in sorted order.
func (r *CacheKeyStruct) ExamRosterKey(examID string, classes []string) string {
	if len(classes) == 0 {
		return fmt.Sprintf("exam:%s:roster", examID)
	}
	sorted := append([]string(nil), classes...)
	sort.Strings(sorted)
	return fmt.Sprintf("exam:%s:roster:%s", examID, strings.Join(sorted, ","))
}

// ExamRosterPattern matches every cached roster snapshot
func (r *CacheKeyStruct) ExamRosterPattern() string {
	return "exam:*:roster*"
}

// ImportBatchKey returns the cache key marking a commit batch as persisted
func (r *CacheKeyStruct) ImportBatchKey(batchID string) string {
	return fmt.Sprintf("import:%s:persisted", batchID)
}

var CacheKey = NewCacheKeyStruct()
