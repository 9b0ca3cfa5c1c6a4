package pipeline

import (
	"fmt"
	"strings"

	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/types"
)

const identifyServiceSystemPrompt = `As an expert in microservices architecture, you are tasked with analyzing an open-source microservices-based project. Your objective is to identify each service instance designed to run within this project and gather basic information about each service.

# Task Instructions

- Locate deploy configuration files (e.g., docker-compose.yml, Kubernetes yaml file, Vagrantfile, etc.), and detect the type of each deploy file (assumed only docker and kubernetes config type are legal, other types are not supported)
- Find all configuration files that should be used to deploy the whole project, analyze and identify every service instances in configuration files.
- For each service identified, you must justify why it is considered a microservice based on the provided sources, and distinguish each service as Prebuilt type or Non-Prebuilt type, which is described as follows.
    - Prebuilt: Some services like Redis, MongoDB, MySQL, RabbitMQ, etc. Typically these services don't need source code to build image, instead prebuilt images hosted in repositories (like Docker Hub) can be directly used for easier deployment.
    - Non-Prebuilt: Firstly, check if build directory is specified in deployment configuration files, or source code found in project directory; If not, try to discover the similarity or consistency between the project folder name and the service name. If a folder that can be associated is found, define it as Non-Prebuilt.
- Identify every replica of images and recognize every replica as an unique service instance when each replica is for different use.
- If the instance is non-prebuilt type, find the directory containing its source code and data.
- Please identify the configuration file used only for a specific service based on the file name, and add it to the results of the corresponding service.
- Please identify common files used by all services, like gRPC protocol definitions, environment variables, etc.
- Please minimize the number of tool calls as much as possible to save tokens.

# Output Format

Your output should strictly obey the following JSON format. Once you get a full result of the task, call ` + "`return_result`" + ` with your result.
` + "```" + `
{
    "deploy_config": [{
        "path": "path of deploy configuration files",
        "type": "only 3 values available: ` + "`DOCKER`, `KUBERNETES`, `UNKNOWN`" + `"
    }],
    "services": [{
            "name": "identifier of the service instance",
            "prebuilt": true,
            "evidence": "why you think this is a service instance",
            "configs": ["path of service-specific and common files"]
        },{
            "name": "identifier of the service instance",
            "prebuilt": false,
            "source_dir": "./path/to/directory/of/service",
            "evidence": "why you think this is a service instance",
            "configs": ["path of service-specific and common files"]
        }]
}
` + "```" + `

# An Example
` + "```" + `
# Deploy file
account-service:
    image: test/account-service
    ...
account-mongodb:
    image: test/mongodb
    ...
statistics-mongodb:
    image: test/mongodb
    ...
rabbitmq:
    image: rabbitmq:3
    ...

# Project directory
- account-service/  # Assume this directory contains codes
- mongodb/          # Assume this directory only contains data
- deploy.yaml       # This is the deploy config file

# Expected output
{
    "deploy_config": [{"path": "./deploy.yaml", "type": "DOCKER"}],
    "services": [
        {
            "name": "account-service",
            "prebuilt": false,
            "evidence": "Service directory contains codes to build image.",
            "source_dir": "./account-service"
        }, {
            "name": "rabbitmq",
            "prebuilt": true,
            "evidence": "Uses prebuilt image and no codes found in project."
        }, {
            "name": "statistics-mongodb",
            "prebuilt": true,
            "evidence": "Service directory only contains data, and uses prebuilt image."
        }, {
            "name": "account-mongodb",
            "prebuilt": true,
            "evidence": "Service directory only contains data, and uses prebuilt image."
        }
    ]
}
` + "```"

func identifyServicePrompt(projectLoc string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(identifyServiceSystemPrompt),
		llm.Human(fmt.Sprintf("The path of project is %s", projectLoc)),
	)
}

const validateServicesSystemPrompt = `# Task Instructions
You are an AI assistant specialized in microservices analysis. You will receive analysis results from another AI assistant for an open-source microservices project, formatted in JSON. Based on the provided analysis results and the project's directory structure, perform the following tasks:

- Verify the accuracy of the path information in the results. Correct any inaccuracies based on the directory structure.
- Convert any absolute paths to relative paths starting with ` + "`./`" + ` based on the project's root directory.

# Output Formats
Your output should strictly obey the following JSON format. Call ` + "`return_result`" + ` to return your result.
` + "```" + `
{
    "modification": "Overall description of your modification on the original analysis results",
    "validated_result": { # Modified result in the same JSON format as original analysis results }
}
` + "```"

func validateServicesPrompt(dirStructure, result string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(validateServicesSystemPrompt),
		llm.Human(fmt.Sprintf("# Directory Structure of Microservice Project\n```\n%s\n```\n\n# Result parsed from LLM is:\n```\n%s\n```", dirStructure, result)),
	)
}

const processConfigCenterSystemPrompt = `# Task Instructions
You are an AI assistant for microservices project analysis. You have data on all service instances in an open-source microservice-based project, including a configuration center that centralizes configuration data storage. However this centralization causes a lack of specific configuration details for individual services. Thus, please analyze the directory structure and file contents in the configuration center source directory to:

- Please analyze only the configuration files intended for the configuration center. Avoid analyzing configuration files for other services that may be in the same directory, to prevent potential misguidance.
- Determine how the configuration center stores configuration files: locally (Local) or remotely (Remote) in locations like Git repositories or databases.
- If the configuration center stores configurations locally, associate each configuration file with the corresponding service using it, based on the provided information. Note that there may be common configuration files used by all services, which should be associated with every service.
- Once you found association between configuration files and services, change the path of configuration files to relative path starting with ` + "`./`" + ` based on the root directory of configuration center.
- Please minimize the number of tool calls as much as possible to save tokens.

# Output Formats
Your output should strictly obey the following JSON format. Call ` + "`return_result`" + ` to return your result.
` + "```" + `
{
    "store": "The way the configuration center stores configuration data, only two values available: ` + "`LOCAL` and `REMOTE`" + `",
    "analysis": "Your analysis based on information provided",
    "services_with_configs": {
        "service1": ["./common_config", "./config1"],
        "service2": ["./common_config", "./config2", "./config3"],
        ......
    }
}
` + "```"

func processConfigCenterPrompt(dirStructure, services string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(processConfigCenterSystemPrompt),
		llm.Human(fmt.Sprintf("# Structure of Configuration Center Source Directory\n```\n%s\n```\n\n# List of all service instances in this project\n```\n%s```", dirStructure, services)),
	)
}

const interpretCodeSystemPrompt = `You are an expert in the field of computer science, currently responsible for code analysis of microservice projects. Based on the code given below, please follow the instructions and provide accurate and realistic results.

TASK INSTRUCTION: You need to analyze the following code or configuration file enclosed by triple backticks, which contains the content of a complete file from the project. Please analyze the content and derive the following results:
1. Explain the definition and functionality of this file based on the content, including but not limited to functions, classes, dependencies, etc.
2. Identify whether the code in the file expose interfaces to external services, including but not limited to HTTP APIs, gRPC interfaces, controllers, routes, listening ports, etc. If found, list relevant details like URI, host, port, request method, etc.
3. Identify whether the code in the file proactively interact with any external services, including but not limited to consuming HTTP APIs or gRPC interfaces, connecting to specific external ports, invoking SOAP services, using message queues, etc. If found, list relevant details like URI, host, port, request method, etc.
4. If possible, identify the framework, other open-source common services, programming language used by this project, based on the file content.
5. Please ensure your response is in natural language format, make it concise, precise, and clear, containing only relevant information in order to save tokens.`

func interpretCodePrompt(dirStructure, relativePath, codeContent string, additionalConfigs []string) *llm.Conversation {
	configs := strings.Join(additionalConfigs, "\n")
	return llm.NewConversation(
		llm.System(interpretCodeSystemPrompt),
		llm.Human(fmt.Sprintf("# PROJECT DIRECTORY STRUCTURE:\n```\n%s\n\n## ADDITIONAL CONFIGS\n%s\n```\n\n# CODE CONTENT: (RELATIVE PATH:  `%s`)\n```\n%s\n```\n\nANSWER:",
			dirStructure, configs, relativePath, codeContent)),
	)
}

const analyzePrebuiltSystemPrompt = `# Task Instructions
You are an AI assistant specializing in microservices architecture. Your task is to analyze pre-built services in an open-source microservices project. Based on the provided image name and port information, please complete the following tasks:

- Determine if the service is a well-known or common open-source service, and provide relevant background information.
- Identify the service's business type, including its function and purpose.
- Confirm the communication protocol used by the open ports (if applicable).

# Output Format
Your output should strictly obey the following JSON format. Call ` + "`return_result`" + ` to return your result.
` + "```" + `
{
    "service": "identified common service name",   # if cannot find a common service, this value is set to null.
    "type": "the service's business type",         # if cannot determine the type of service, this value is set to null.
    "ports": [ {"port": PORT_NUMBER, "protocol": "Protocol"}, ... ],  # ` + "`protocol`" + ` can be set to null if cannot be inferred.
    "analysis": "explain why you reach the result"
}
` + "```"

func analyzePrebuiltPrompt(images, ports []string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(analyzePrebuiltSystemPrompt),
		llm.Human(fmt.Sprintf("# Image name of target service\n%s\n\n# Open ports of this service in deployment config\n%s",
			strings.Join(images, ", "), strings.Join(ports, ", "))),
	)
}

const analyzeNonPrebuiltSystemPrompt = `# Task Instructions
You are an AI assistant specializing in microservices architecture. Your task is to analyze non-prebuilt services in an open-source microservices project. You will receive a set of briefs of key code or configuration files related to the service. Based on this, complete the tasks below.

- Determine if the service uses a well-known or common open-source service, and provide relevant background information.
- Identify the service's business type, including its function and purpose.
- Confirm the communication protocol used by the open ports (if applicable).
- Find data interactions of this service, including ports, APIs, controllers, and routes that are exposed to external services, and files and code segments where this project proactively communicates with external services (e.g., consuming REST APIs, invoking SOAP services, using message queues).

# Output Format
Your output should strictly obey the following JSON format. Call ` + "`return_result`" + ` to return your result.
` + "```" + `
{
    "analysis": "explain why you reach the result", # Keep this value clear and concise, within 100 words.
    "service": "identified common service name",   # if cannot find a common service, this value is set to null.
    "type": "the service's business type",         # if cannot determine the type of service, this value is set to null.
    "ports": [ {"port": PORT_NUMBER, "protocol": "Protocol"}, ... ],  # ` + "`protocol`" + ` can be set to null if cannot be inferred.
    "language": ["Mainly used programming languages in this service", ...],
    "interactions": [
        {
            "type": "Is this interaction exposes port(s) to passively accept requests from external sources, or actively send request to external sources. Only two values avaliable: ` + "`passive` and `active`" + `.",
            "directionality": "The data flow direction of this interaction, only three values avaliable: ` + "`request-response`, `only-send`, `only-receive`" + `.",
            "description": "Brief description of this interaction, keep it simple and concise.",
            "target_service": "The target service of this interaction. If interaction type is ` + "`passive`" + `, this should be set to null.",
            "interaction_type": "Interaction methods or behaviour between microservices, Including but not limited to HTTP, WebSocket, TCP, UDP, RPC, Message Queue, Database Request, Cache Access, File Transfer, etc.",
            "interaction_details":
            # NOTICE: If you found multiple possible values for one interaction, just split them into multiple interactions. DON'T COMBINE THEM IN ONE INTERACTION OR SYNTAX ERROR WILL EASILY OCCUR!
            {
                # The content of this object depends on the type of interaction. Provide details about this interaction as key-value pairs.
                "method": "Use this attribute to store request method, like HTTP method, gRPC method, etc. Don't combine multiple method in one interaction, split them into different single interactions.",
                "host": "Use this attribute to store target host name or IP address. Don't store port number in this attribute.",

                # Use this attribute to store port number. If your value is not a valid number, use STRING rather than number to avoid syntax error.
                "port": PORT_NUMBER,

                # OPTIONAL_ATTRS: If more details are found, feel free to add more attributes based on this interaction, as detailed as possible.
                "url": "Use this attribute to store URL, URI, routes-like data.",
                "queue_name": "...",
                "redis_command": "...",
                "database_name": "...",
                "query_arguments": "...",
                ...
            }

        }, ...
    ]
}
` + "```"

func analyzeNonPrebuiltPrompt(serviceName string, ports []string, ragResult string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(analyzeNonPrebuiltSystemPrompt),
		llm.Human(fmt.Sprintf("# Service name\n%s\n\n# Open ports of this service in deployment config\n%s\n\n# Retrieved briefs of key files\n%s\n",
			serviceName, strings.Join(ports, ", "), ragResult)),
	)
}

const queryVectorDBPrompt = `In this microservice project, please provide a comprehensive list of all the ports, APIs, controllers, and routes that are exposed to external services. Additionally, identify all the files and code segments where this project proactively communicates with external services (e.g., consuming REST APIs, invoking SOAP services, using message queues).`

const validateInteractionsSystemPrompt = `# Task Instructions
You are an AI assistant specialized in microservices analysis. You will receive analysis results from another AI assistant for an open-source microservices project, formatted in JSON. Based on the provided analysis results, perform the following tasks:

- Remove all null values in the ` + "`interaction_details`" + ` dictionary under each interaction.
- Ensure and adjust the ` + "`host` and `port`" + ` values in ` + "`interaction_details`" + ` under each interaction, and make sure ` + "`host` and `port`" + ` are stored seperately. Note that PORT must be explicitly stated, even if it is special like 80 or 443. If the host contains unnecessary information, create and add corresponding entries in ` + "`interaction_details`" + `. For example:
    ` + "```" + `
    # input
    - "interaction_details": { "host": "http://some-service:8000/abc/def" }
    - "interaction_details": { "host": "https://another-service" }

    # output
    - "interaction_details": { "host": "some-service", "port": 8000, "url": "/abc/def" }
    - "interaction_details": { "host": "another-service", "port": 443, "protocol": "https" }
    ` + "```" + `

# Output Formats
Your output should strictly obey the same JSON format as original analysis results. Call ` + "`return_result`" + ` to return your result.`

func validateInteractionsPrompt(serviceName, result string) *llm.Conversation {
	return llm.NewConversation(
		llm.System(validateInteractionsSystemPrompt),
		llm.Human(fmt.Sprintf("# Current service name\n%s\n\n# Result parsed from LLM is:\n```\n%s\n```", serviceName, result)),
	)
}

// formatServices renders the service list shown to the config-center agent.
func formatServices(services []types.IdentifiedService, configCenter string) string {
	var b strings.Builder
	for _, s := range services {
		b.WriteString("- " + s.Name)
		if !s.Prebuilt {
			b.WriteString(fmt.Sprintf(" (source: %s)", s.SourceDir))
		}
		if s.Name == configCenter {
			b.WriteString(" [CONFIG_CENTER]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
