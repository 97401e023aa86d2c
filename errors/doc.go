// Package errors provides structured errors for envkit.
//
// # Overview
//
// Every failure surfaced by envkit carries an ErrorCode identifying the
// condition and an ErrorCategory describing its nature: a protocol
// condition reported by the server, a transport failure, or a usage
// (programmer) error. Callers branch on codes with errors.Is/As rather
// than string matching.
//
// # Usage
//
// Check for a specific condition:
//
//	environ, err := env.New(ctx, tr, decl)
//	if errors.HasCode(err, errors.CodeSyncFailed) {
//	    // the server never acknowledged an initialization round
//	}
//
// Fatal conditions (a required global missing, a reentrant exclusive
// access) are delivered as panics carrying *errors.Error, so supervisors
// that recover can still classify them:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        if e, ok := r.(*errors.Error); ok && e.Code() == errors.CodeMissingGlobal {
//	            log.Fatalf("server lacks %s", e.Metadata()["interface"])
//	        }
//	        panic(r)
//	    }
//	}()
package errors
