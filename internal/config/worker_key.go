package config

type WorkerKeyStruct struct {
	PersistImportCommitsQueue      string
	PersistImportCommitsDeadLetter string
}

var WorkerKey = &WorkerKeyStruct{
	PersistImportCommitsQueue:      "persist_import_commits_queue",
	PersistImportCommitsDeadLetter: "persist_import_commits_dead_letter",
}
