// FILE: synctrack/src/internal/service/errors.go
package service

import (
	"errors"
	"fmt"

	"synctrack/src/internal/syncclient"

	"go.mongodb.org/mongo-driver/bson"
)

// DescribeError renders err for the console. Backend replies carrying a document
// are shown as relaxed extended JSON.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	var se *syncclient.StatusError
	if !errors.As(err, &se) || se.Body == "" {
		return err.Error()
	}

	var doc bson.D
	if uerr := bson.UnmarshalExtJSON([]byte(se.Body), false, &doc); uerr != nil {
		return err.Error()
	}
	pretty, merr := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
	if merr != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s %s: server returned status %d:\n%s", se.Method, se.Path, se.Code, pretty)
}
