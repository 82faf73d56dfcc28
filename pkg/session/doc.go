/*
Package session implements project access and persistence orchestration.

A Manager keeps one open goflow.Editor per project, serialises the work done
on a project with reference-counted local mutexes and an optional
distributed lock, and saves a snapshot after every successful edit.
*/
package session
