package goflow

// Version is the release of the goflow module.
const Version = "0.1.0"
