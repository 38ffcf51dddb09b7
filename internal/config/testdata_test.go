package config

const validYAML = `
cluster:
  name: prod
  certificate_path: /etc/splunk/certs/server.pem
  archival_backend:
    bucket: prod-frozen
    region: us-east-1
  tags:
    team: observability
network:
  vpc_id: vpc-0123
  subnets: [subnet-a, subnet-b]
  security_groups: [sg-1]
nodes:
  searchhead:
    count: 2
    instance_type: m5.xlarge
    ami_id: ami-sh
  indexer:
    count: 3
    instance_type: i3.2xlarge
    ami_id: ami-idx
    tags:
      tier: hot
  deployer:
    count: 1
    instance_type: t3.large
    ami_id: ami-dep
  clustermaster:
    count: 1
    instance_type: m5.large
    ami_id: ami-cm
bootstrap:
  ssh:
    private_key_path: /home/ops/.ssh/splunk
`

func validConfig() *Config {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		panic(err)
	}
	return cfg
}
