// Package logs reads back the run log written under logging.dir.
//
// Reads are bounded: the last N lines are kept in a ring, and follow mode
// resumes from a byte offset so a long-lived tail never rereads the file.
// Lines can be narrowed to a single run by its run_id, which every workflow
// stamps on its records in both the console and JSON formats.
package logs
