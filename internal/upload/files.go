package upload

import (
	"os"

	"github.com/cloudnest/cloudnest-client/pkg/models"
)

func openAssetFile(asset models.Asset) (*os.File, error) {
	return os.Open(asset.Path())
}
