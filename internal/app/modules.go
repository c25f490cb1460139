package app

import (
	"github.com/vk/cryoflow/internal/registry"

	"github.com/vk/cryoflow/modules/command"
	"github.com/vk/cryoflow/modules/downsample"
	"github.com/vk/cryoflow/modules/envvars"
	"github.com/vk/cryoflow/modules/filterstar"
	"github.com/vk/cryoflow/modules/golden"
	"github.com/vk/cryoflow/modules/notify"
	"github.com/vk/cryoflow/modules/parsectf"
	"github.com/vk/cryoflow/modules/parsepose"
	"github.com/vk/cryoflow/modules/phaseflip"
	prnt "github.com/vk/cryoflow/modules/print"
	"github.com/vk/cryoflow/modules/scratch"
	"github.com/vk/cryoflow/modules/script"
	"github.com/vk/cryoflow/modules/toolkitres"
	"github.com/vk/cryoflow/modules/writestar"
)

// coreModules returns the modules compiled into the stock binary, matching
// the manifests shipped under the default modules path.
func coreModules() []registry.Module {
	return []registry.Module{
		&toolkitres.Module{},
		&scratch.Module{},
		&parsectf.Module{},
		&parsepose.Module{},
		&downsample.Module{},
		&writestar.Module{},
		&filterstar.Module{},
		&phaseflip.Module{},
		&command.Module{},
		&script.Module{},
		&golden.Module{},
		&prnt.Module{},
		&envvars.Module{},
		&notify.Module{},
	}
}
