// Package language normalizes language codes and detects the language of
// extracted facts.
//
// Only English and Hindi are supported content languages; generation rejects
// anything else. Detection is a script check, not a classifier.
package language
