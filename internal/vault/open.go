package vault

import (
	"context"
	"strings"
)

// Open returns the vault a run should write to and the folder, relative to
// that vault, that notes go under. A target folder of the form
// s3://bucket/prefix selects an S3 vault rooted at the prefix; anything else
// is a folder inside the local vault at root.
func Open(ctx context.Context, root, targetFolder, region string) (Vault, string, error) {
	if strings.HasPrefix(targetFolder, "s3://") {
		bucket, prefix, err := ParseS3URL(targetFolder)
		if err != nil {
			return nil, "", err
		}
		v, err := NewS3Vault(ctx, bucket, prefix, region)
		if err != nil {
			return nil, "", err
		}
		return v, "", nil
	}

	v, err := NewFSVault(root)
	if err != nil {
		return nil, "", err
	}
	return v, Clean(targetFolder), nil
}
