// Package s3 provides an S3 bucket backend.
package s3

import (
	"errors"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	s3fs "github.com/fclairamb/afero-s3"
	"github.com/spf13/afero"

	"github.com/unifyhq/finale-ftp/models"
)

// ErrMissingBucket is returned if no bucket was specified.
var ErrMissingBucket = errors.New("missing bucket")

// LoadFs loads a file system from an access description
func LoadFs(access *models.Access) (afero.Fs, error) {
	bucket := access.Param("bucket")
	if bucket == "" {
		bucket = os.Getenv("S3_BUCKET")
	}
	if bucket == "" {
		return nil, ErrMissingBucket
	}

	region := access.Param("region")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	conf := &aws.Config{
		Region: aws.String(region),
	}

	if endpoint := access.Param("endpoint"); endpoint != "" {
		conf.Endpoint = aws.String(endpoint)
		conf.S3ForcePathStyle = aws.Bool(true)
	}

	if accessKey := access.Param("access_key"); accessKey != "" {
		conf.Credentials = credentials.NewStaticCredentials(
			accessKey,
			access.Param("secret"),
			"",
		)
	}

	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, err
	}

	return s3fs.NewFs(bucket, sess), nil
}
